package web

// indexHTML はミーム生成フォームの静的ページです。
// フォームの現在値だけを各リクエストに載せて送るため、ページ側にも
// サーバー側にも共有状態はありません。
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AI Meme Generator</title>
<style>
  body { font-family: sans-serif; max-width: 640px; margin: 2rem auto; padding: 0 1rem; }
  label { display: block; margin-top: 1rem; font-weight: 600; }
  input[type=text], input[type=password] { width: 100%; padding: 0.5rem; }
  button { margin-top: 1rem; padding: 0.75rem 1.5rem; border-radius: 0.5rem; font-weight: 600; }
  #message { color: #b00; margin-top: 0.5rem; }
</style>
</head>
<body>
<h1>&#128514; AI Meme Generator</h1>
<p>Create your own memes or let AI suggest a caption for you!</p>

<form id="meme-form" action="/meme" method="post" enctype="multipart/form-data">
  <label for="api_key">Google AI API Key (enables AI features)</label>
  <input type="password" id="api_key" name="api_key" autocomplete="off">

  <label for="image">Choose an image...</label>
  <input type="file" id="image" name="image" accept=".jpg,.jpeg,.png" required>

  <label for="top_text">Top Text</label>
  <input type="text" id="top_text" name="top_text">

  <label for="bottom_text">Bottom Text</label>
  <input type="text" id="bottom_text" name="bottom_text">

  <button type="button" id="suggest">&#10024; Suggest Caption with AI</button>
  <button type="submit">Download Meme</button>
  <div id="message"></div>
</form>

<script>
document.getElementById("suggest").addEventListener("click", async () => {
  const message = document.getElementById("message");
  message.textContent = "";
  const form = new FormData();
  const file = document.getElementById("image").files[0];
  if (!file) {
    message.textContent = "Upload an image to get started.";
    return;
  }
  form.append("image", file);
  form.append("api_key", document.getElementById("api_key").value);
  try {
    const resp = await fetch("/caption", { method: "POST", body: form });
    const data = await resp.json();
    if (data.error) {
      message.textContent = data.error;
    }
    if (data.caption) {
      document.getElementById("bottom_text").value = data.caption;
    }
  } catch (err) {
    message.textContent = "An error occurred while contacting the AI.";
  }
});
</script>
</body>
</html>
`
